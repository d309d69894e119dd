package routehandlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coreybb/rhymera/auth"
	"github.com/coreybb/rhymera/models"
	"github.com/coreybb/rhymera/webutil"
)

// BookGenerator is satisfied by processing.BookPipeline.
type BookGenerator interface {
	Generate(ctx context.Context, req models.BookRequest, principal *models.Principal) (*models.BookRecord, error)
}

type GenerateHandler struct {
	Pipeline BookGenerator
	MaxPages int
}

func NewGenerateHandler(pipeline BookGenerator, maxPages int) *GenerateHandler {
	return &GenerateHandler{Pipeline: pipeline, MaxPages: maxPages}
}

// HandleGenerateBook runs the whole pipeline inside the request. Authenticated callers get the
// book persisted; anonymous callers only get it back.
func (h *GenerateHandler) HandleGenerateBook(w http.ResponseWriter, r *http.Request) error {
	var req models.BookRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	if bt, ok := models.ParseBookType(string(req.BookType)); ok {
		req.BookType = bt
	}
	if err := req.Validate(h.MaxPages); err != nil {
		return webutil.ErrBadRequestWrap(err.Error(), err)
	}

	book, err := h.Pipeline.Generate(r.Context(), req, auth.PrincipalFrom(r.Context()))
	if err != nil {
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "book generation failed: "+err.Error(), err)
	}
	webutil.RespondWithJSON(w, http.StatusOK, book)
	return nil
}
