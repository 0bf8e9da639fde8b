package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOKWithData(t *testing.T) {
	resp := OKWithData(map[string]any{"fetched": 1})

	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.Equal(t, map[string]any{"fetched": 1}, resp.Data)
}

func TestError(t *testing.T) {
	resp := Error("missing billing store settings")

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "missing billing store settings", resp.Error)
	assert.Nil(t, resp.Data)
}
