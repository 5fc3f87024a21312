package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvKey(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"APP_SERVER__PORT", "server.port"},
		{"APP_DATABASE__MAX_OPEN_CONNS", "database.max_open_conns"},
		{"APP_STORAGE__MAX_UPLOAD_SIZE", "storage.max_upload_size"},
		{"APP_LLM__BASE_URL", "llm.base_url"},
		{"APP_LOG_LEVEL", "log_level"},
		{"APP_DNS", "dns"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, envKey(tc.in), "input %q", tc.in)
	}
}
