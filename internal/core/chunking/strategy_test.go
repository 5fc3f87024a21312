package chunking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookwhisperer/config"
)

func TestForLLMDefaults(t *testing.T) {
	saved := config.Cfg.Chunking
	defer func() { config.Cfg.Chunking = saved }()

	strategy := ForLLM()
	assert.Equal(t, 3800, strategy.MaxChunkSize)
	assert.Equal(t, 200, strategy.OverlapSize)
	assert.True(t, strategy.RespectBoundaries)
	require.NoError(t, strategy.Validate())
}

func TestForLLMHonorsConfig(t *testing.T) {
	saved := config.Cfg.Chunking
	defer func() { config.Cfg.Chunking = saved }()

	config.Cfg.Chunking.LLMMaxChars = 2000
	config.Cfg.Chunking.LLMOverlap = 100

	strategy := ForLLM()
	assert.Equal(t, 2000, strategy.MaxChunkSize)
	assert.Equal(t, 100, strategy.OverlapSize)
}

func TestForLLMFallsBackOnBadValues(t *testing.T) {
	saved := config.Cfg.Chunking
	defer func() { config.Cfg.Chunking = saved }()

	config.Cfg.Chunking.LLMMaxChars = 0
	config.Cfg.Chunking.LLMOverlap = -5

	strategy := ForLLM()
	assert.Equal(t, 3800, strategy.MaxChunkSize)
	assert.Equal(t, 200, strategy.OverlapSize)
}

func TestForTTS(t *testing.T) {
	saved := config.Cfg.TTS
	defer func() { config.Cfg.TTS = saved }()

	strategy := ForTTS()
	assert.Equal(t, 5000, strategy.MaxChunkSize)
	assert.Equal(t, 0, strategy.OverlapSize)
	assert.True(t, strategy.RespectBoundaries)
	require.NoError(t, strategy.Validate())

	config.Cfg.TTS.MaxChunkSize = 3000
	assert.Equal(t, 3000, ForTTS().MaxChunkSize)
}

func TestStrategyValidate(t *testing.T) {
	cases := []struct {
		name     string
		strategy Strategy
		ok       bool
	}{
		{"valid", Strategy{MaxChunkSize: 100, OverlapSize: 10}, true},
		{"valid no overlap", Strategy{MaxChunkSize: 100}, true},
		{"zero max", Strategy{MaxChunkSize: 0}, false},
		{"negative max", Strategy{MaxChunkSize: -1}, false},
		{"negative overlap", Strategy{MaxChunkSize: 100, OverlapSize: -1}, false},
		{"overlap equals max", Strategy{MaxChunkSize: 100, OverlapSize: 100}, false},
		{"overlap exceeds max", Strategy{MaxChunkSize: 100, OverlapSize: 200}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.strategy.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrConfiguration)
			}
		})
	}
}

func TestBoundaryWindow(t *testing.T) {
	assert.Equal(t, 1, Strategy{MaxChunkSize: 2}.boundaryWindow())
	assert.Equal(t, 100, Strategy{MaxChunkSize: 400}.boundaryWindow())
	assert.Equal(t, 200, Strategy{MaxChunkSize: 3800}.boundaryWindow())
}
