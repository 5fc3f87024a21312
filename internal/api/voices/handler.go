package voices

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"bookwhisperer/config"
	"bookwhisperer/internal/core/tts"
	"bookwhisperer/pkg/apperror"
	"bookwhisperer/pkg/apperror/status"
)

type listResponse struct {
	Voices []tts.Voice `json:"voices"`
	Total  int         `json:"total"`
}

// HandleList proxies the speech server's voice library.
func HandleList(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	voices, err := tts.New().Voices(c.Context())
	if err != nil {
		return apperror.InternalError(config.ModuleTTS, c, err)
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "voices listed",
		TrackingID: trackingID,
		Data:       listResponse{Voices: voices, Total: len(voices)},
	})
}

// HandleUpload pushes a custom voice sample into the speech server's
// library so later generation requests can reference it by name.
func HandleUpload(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	name := strings.TrimSpace(c.FormValue("voice_name"))
	if name == "" {
		return apperror.BadRequest(config.ModuleTTS, c, status.AudioInvalidRequest, "voice_name is required")
	}
	fh, err := c.FormFile("voice_file")
	if err != nil || fh == nil || fh.Size == 0 {
		return apperror.BadRequest(config.ModuleTTS, c, status.AudioInvalidRequest, "voice_file is required")
	}

	sample, err := fh.Open()
	if err != nil {
		return apperror.BadRequest(config.ModuleTTS, c, status.AudioInvalidRequest, "cannot open voice sample")
	}
	defer sample.Close()

	language := strings.TrimSpace(c.FormValue("language"))
	if err := tts.New().UploadVoice(c.Context(), name, fh.Filename, sample, language); err != nil {
		return apperror.InternalError(config.ModuleTTS, c, err)
	}

	return apperror.Created(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "voice uploaded",
		TrackingID: trackingID,
	})
}
