// Package tiermap реализует отображение тарифа подписки в имя группы
// чат-платформы и вспомогательную нормализацию email.
//
// Отображение тотально: любой нераспознанный или пустой тариф попадает
// в группу free. Имена групп задаются конфигом, а не константами.
package tiermap

import "strings"

// Тарифы, известные биллингу.
const (
	TierFree     = "free"
	TierStandard = "standard"
	TierPro      = "pro"
)

// Mapping фиксированное отображение тариф → имя группы.
type Mapping struct {
	free     string
	standard string
	pro      string
}

// New создает Mapping с именами групп для free, standard и pro.
func New(free, standard, pro string) Mapping {
	return Mapping{
		free:     free,
		standard: standard,
		pro:      pro,
	}
}

// Group возвращает имя группы для тарифа. Вход нормализуется
// (trim + нижний регистр); всё нераспознанное отображается в группу free.
func (m Mapping) Group(tier string) string {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case TierStandard:
		return m.standard
	case TierPro:
		return m.pro
	default:
		return m.free
	}
}

// NormalizeEmail приводит email к каноническому виду ключа:
// обрезает пробелы и переводит в нижний регистр.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LocalPart возвращает часть email до первой @. Для строки без @
// возвращается вся строка целиком.
func LocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
