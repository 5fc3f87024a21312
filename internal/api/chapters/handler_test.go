package chapters

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureGenerateParams(t *testing.T, target, contentType, body string) (string, string) {
	t.Helper()

	var voice, language string
	app := fiber.New()
	app.Post("/generate", func(c fiber.Ctx) error {
		v, l, err := generateParams(c)
		if err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}
		voice, language = v, l
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return voice, language
}

func TestGenerateParamsFromBody(t *testing.T) {
	voice, language := captureGenerateParams(t, "/generate",
		fiber.MIMEApplicationJSON, `{"voice":"narrator","language":"fr"}`)
	assert.Equal(t, "narrator", voice)
	assert.Equal(t, "fr", language)
}

func TestGenerateParamsFromQuery(t *testing.T) {
	voice, language := captureGenerateParams(t, "/generate?voice=storyteller&language=en", "", "")
	assert.Equal(t, "storyteller", voice)
	assert.Equal(t, "en", language)
}

func TestGenerateParamsBodyOverridesQuery(t *testing.T) {
	voice, language := captureGenerateParams(t, "/generate?voice=from_query&language=en",
		fiber.MIMEApplicationJSON, `{"voice":"from_body"}`)
	assert.Equal(t, "from_body", voice)
	// body left language unset, the query still applies
	assert.Equal(t, "en", language)
}

func TestGenerateParamsDefaultsEmpty(t *testing.T) {
	voice, language := captureGenerateParams(t, "/generate", "", "")
	assert.Equal(t, "", voice)
	assert.Equal(t, "", language)
}
