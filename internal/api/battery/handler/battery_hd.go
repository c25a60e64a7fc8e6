package batteryHandler

import (
	"BatteryDetect/internal/api/battery"
	"BatteryDetect/internal/ui"
	contextPkg "BatteryDetect/pkg/context"
	"BatteryDetect/pkg/handlerUtil"
	"BatteryDetect/pkg/log"
	"BatteryDetect/pkg/utils"
	"bytes"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

const requestTimeout = 10 * time.Second

// analyzeGrace covers the session reads and writes around the API call.
const analyzeGrace = 5 * time.Second

func (h *BatteryHandler) Index(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	st, err := h.batteryService.Current(c, h.middleware.GetSessionID(ctx))
	if err != nil {
		return handlerUtil.New(h.log).Handle(ctx, requestID, err, ctx.Path(), "current_state")
	}

	return h.respond(ctx, st, fiber.StatusOK)
}

func (h *BatteryHandler) SelectFile(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	sessionID := h.middleware.GetSessionID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	file, err := ctx.FormFile("image")
	if err != nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"error":      err.Error(),
		}).Debug("No image in select request")
		return h.rejectUpload(ctx, c, sessionID, ui.AlertNoSelection, battery.ErrMissingFile)
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"file_name":  file.Filename,
		"file_size":  file.Size,
	}).Debug("Processing file upload")

	data, contentType, err := h.utils.ReadUpload(file)
	switch {
	case errors.Is(err, utils.ErrFileTooLarge):
		return h.rejectUpload(ctx, c, sessionID, ui.AlertFileTooLarge, battery.ErrFileTooLarge)
	case errors.Is(err, utils.ErrNoFile):
		return h.rejectUpload(ctx, c, sessionID, ui.AlertNoSelection, battery.ErrMissingFile)
	case err != nil:
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_upload")
	}

	upload := battery.Upload{
		Filename:    file.Filename,
		ContentType: contentType,
		Data:        data,
	}
	if err := h.validator.Struct(upload); err != nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Debug("Upload failed validation")
		return h.rejectUpload(ctx, c, sessionID, ui.AlertNoSelection, battery.ErrMissingFile)
	}

	st, err := h.batteryService.SelectFile(c, sessionID, upload)
	if err != nil {
		return h.fail(ctx, requestID, st, err, "select_file")
	}

	return h.respond(ctx, st, fiber.StatusOK)
}

func (h *BatteryHandler) Analyze(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.analyzeTimeout+analyzeGrace)
	defer cancel()

	st, err := h.batteryService.Analyze(c, h.middleware.GetSessionID(ctx))
	if err != nil {
		return h.fail(ctx, requestID, st, err, "analyze")
	}

	return h.respond(ctx, st, fiber.StatusOK)
}

func (h *BatteryHandler) Reset(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	st, err := h.batteryService.Reset(c, h.middleware.GetSessionID(ctx))
	if err != nil {
		return h.fail(ctx, requestID, st, err, "reset")
	}

	return h.respond(ctx, st, fiber.StatusOK)
}

// Status always answers 200. Reachability is part of the body.
func (h *BatteryHandler) Status(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	probe := h.batteryService.CheckStatus(c)

	return ctx.Status(fiber.StatusOK).JSON(battery.StatusResponse{
		BackendProbe: probe,
		APIBaseURL:   h.batteryService.APIBaseURL(),
	})
}

func (h *BatteryHandler) Image(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	data, contentType, err := h.batteryService.FetchImage(c, ctx.Params("filename"))
	if err != nil {
		return handlerUtil.New(h.log).Handle(ctx, requestID, err, ctx.Path(), "fetch_image")
	}

	if contentType == "" {
		contentType = h.utils.DetectContentType(data)
	}
	ctx.Set(fiber.HeaderContentType, contentType)
	ctx.Set(fiber.HeaderCacheControl, "private, max-age=300")

	return ctx.Status(fiber.StatusOK).Send(data)
}

// rejectUpload answers a select request that never reached the service. The
// session state is shown unchanged with an alert.
func (h *BatteryHandler) rejectUpload(ctx *fiber.Ctx, c context.Context, sessionID string, kind ui.AlertKind, cause error) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	st, err := h.batteryService.Current(c, sessionID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "current_state")
	}

	errHandler.LogDomainError(requestID, cause, ctx.Path(), "select_file")
	return h.respond(ctx, st.WithAlert(kind, ""), errHandler.StatusFor(cause))
}

// fail renders domain errors as the page with its alert. Anything else, and
// a missing session, goes through the JSON error handler.
func (h *BatteryHandler) fail(ctx *fiber.Ctx, requestID string, st ui.State, err error, operation string) error {
	errHandler := handlerUtil.New(h.log)

	if !errHandler.IsDomainError(err) || errors.Is(err, battery.ErrSessionMissing) {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), operation)
	}

	errHandler.LogDomainError(requestID, err, ctx.Path(), operation)
	return h.respond(ctx, st, errHandler.StatusFor(err))
}

// respond writes the page view as HTML, or as JSON when the client prefers it.
func (h *BatteryHandler) respond(ctx *fiber.Ctx, st ui.State, status int) error {
	view := ui.BuildView(
		st,
		h.text,
		h.batteryService.ImageURL,
		h.batteryService.LastProbe(),
		h.batteryService.APIBaseURL(),
	)

	if ctx.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
		return ctx.Status(status).JSON(view)
	}

	var buf bytes.Buffer
	if err := ui.Page(&buf, view); err != nil {
		return handlerUtil.New(h.log).Handle(ctx, h.middleware.GetRequestID(ctx), err, ctx.Path(), "render_page")
	}

	ctx.Set(fiber.HeaderCacheControl, "no-store")
	ctx.Type("html", "utf-8")
	return ctx.Status(status).Send(buf.Bytes())
}
