package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/melsimpson1023/project-2-gemstone/internal/service/gemstone"
)

// gemstonePayload accepts the legacy name/price keys alongside title/text.
type gemstonePayload struct {
	Title *string `json:"title"`
	Text  *string `json:"text"`
	Name  *string `json:"name"`
	Price *string `json:"price"`
}

func (p gemstonePayload) input() gemstone.Input {
	var in gemstone.Input
	switch {
	case p.Title != nil:
		in.Title = *p.Title
	case p.Name != nil:
		in.Title = *p.Name
	}
	switch {
	case p.Text != nil:
		in.Text = *p.Text
	case p.Price != nil:
		in.Text = *p.Price
	}
	return in
}

func decodeGemstone(req *http.Request) (gemstone.Input, error) {
	var payload struct {
		Gemstone gemstonePayload `json:"gemstone"`
	}
	if err := decodeJSON(req, &payload); err != nil && !errors.Is(err, errEmptyBody) {
		return gemstone.Input{}, err
	}
	return payload.Gemstone.input(), nil
}

func (r *Router) handleGemstones(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		gems, err := r.gems.List(req.Context())
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		out := make([]gemstoneResponse, 0, len(gems))
		for _, gem := range gems {
			out = append(out, marshalGemstone(gem))
		}
		writeJSON(w, http.StatusOK, map[string]any{"gemstones": out})
	case http.MethodPost:
		input, err := decodeGemstone(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		info, _ := authInfoFromContext(req.Context())
		gem, err := r.gems.Create(req.Context(), info.UserID, input)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"gemstone": marshalGemstone(*gem)})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleGemstone(w http.ResponseWriter, req *http.Request) {
	id := strings.TrimPrefix(req.URL.Path, "/gemstones/")
	if id == "" || strings.Contains(id, "/") {
		r.notFound(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	switch req.Method {
	case http.MethodGet:
		gem, err := r.gems.Get(req.Context(), id)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"gemstone": marshalGemstone(*gem)})
	case http.MethodPatch:
		patch, err := decodeGemstone(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if _, err := r.gems.Update(req.Context(), info.UserID, id, patch); err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := r.gems.Delete(req.Context(), info.UserID, id); err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		r.methodNotAllowed(w)
	}
}
