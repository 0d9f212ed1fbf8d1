package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"github.com/wilhg/kit/pkg/errmodel"
	"github.com/wilhg/kit/pkg/form"
	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/render"
	"github.com/wilhg/kit/pkg/runner"
	"github.com/wilhg/kit/pkg/schema"
	"github.com/wilhg/kit/pkg/store"
	"github.com/wilhg/kit/pkg/tool"
)

// GET /api/tools
func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	tools, err := s.reg.List(r.Context(), session(r))
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	if tools == nil {
		tools = []*tool.Definition{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

// GET /api/tools/{slug}
func (s *Server) getTool(w http.ResponseWriter, r *http.Request) {
	d, err := s.reg.Get(r.Context(), session(r), chi.URLParam(r, "slug"))
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// POST /api/tools creates or updates a definition owned by the caller.
func (s *Server) saveTool(w http.ResponseWriter, r *http.Request) {
	b, err := readBody(w, r)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	d, err := tool.ParseJSON(b)
	if err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation(errmodel.CodeInvalidDef, "tool definition is not valid JSON", map[string]any{"error": err.Error()}))
		return
	}
	res, err := s.reg.Save(r.Context(), session(r), d)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// DELETE /api/tools/{slug} moves the tool to the recycle bin.
func (s *Server) deleteTool(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := s.reg.Delete(r.Context(), session(r), slug); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "slug": slug})
}

// GET /api/tools/{slug}/form
func (s *Server) toolForm(w http.ResponseWriter, r *http.Request) {
	d, err := s.reg.Get(r.Context(), session(r), chi.URLParam(r, "slug"))
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tool": d.Slug, "fields": form.Fields(d.Input(), nil)})
}

// POST /api/run-tool with {"tool_slug", "input"}. The input keeps the key
// order it was sent with.
func (s *Server) runTool(w http.ResponseWriter, r *http.Request) {
	b, err := readBody(w, r)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	body, err := jsonv.DecodeObject(b)
	if err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation(errmodel.CodeBadInput, "request body must be a JSON object", map[string]any{"error": err.Error()}))
		return
	}
	req := runner.Request{Session: session(r)}
	req.Slug, _ = mustString(body, "tool_slug")
	req.Input, _ = body.Get("input")
	if req.Session == "" {
		req.Session, _ = mustString(body, "session_id")
	}
	res, err := s.runner.Run(r.Context(), req)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/render with {"schema", "data"} returns the render tree.
func (s *Server) renderTree(w http.ResponseWriter, r *http.Request) {
	sch, data, err := schemaAndValue(w, r, "data")
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, render.Render(sch, data))
}

// POST /api/form with {"schema", "value"} returns the form controls and
// the required fields still missing from value.
func (s *Server) formFields(w http.ResponseWriter, r *http.Request) {
	sch, value, err := schemaAndValue(w, r, "value")
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	obj, _ := value.(*jsonv.Object)
	missing := form.Missing(sch, obj)
	if missing == nil {
		missing = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": form.Fields(sch, obj), "missing": missing})
}

func schemaAndValue(w http.ResponseWriter, r *http.Request, valueKey string) (*schema.Node, any, error) {
	b, err := readBody(w, r)
	if err != nil {
		return nil, nil, err
	}
	if !gjson.ValidBytes(b) {
		return nil, nil, errmodel.Validation(errmodel.CodeBadInput, "request body is not valid JSON", nil)
	}
	sch, err := schema.Parse([]byte(gjson.GetBytes(b, "schema").Raw))
	if err != nil {
		return nil, nil, errmodel.Validation(errmodel.CodeBadInput, "schema is invalid", map[string]any{"error": err.Error()})
	}
	raw := gjson.GetBytes(b, valueKey).Raw
	if raw == "" {
		return sch, nil, nil
	}
	v, err := jsonv.Decode([]byte(raw))
	if err != nil {
		return nil, nil, errmodel.Validation(errmodel.CodeBadInput, valueKey+" is invalid", nil)
	}
	return sch, v, nil
}

// POST /api/bootstrap provisions the caller's tool forge copy.
func (s *Server) bootstrap(w http.ResponseWriter, r *http.Request) {
	slug, created, err := s.reg.Bootstrap(r.Context(), session(r))
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slug": slug, "created": created})
}

// GET /api/interactions?tool_slug=&limit=
func (s *Server) listInteractions(w http.ResponseWriter, r *http.Request) {
	list, err := s.reg.Interactions(r.Context(), session(r), r.URL.Query().Get("tool_slug"), queryLimit(r))
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	if list == nil {
		list = []store.Interaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"interactions": list})
}

// DELETE /api/interactions/{id}
func (s *Server) deleteInteraction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.reg.DeleteInteraction(r.Context(), session(r), id); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

// GET /api/recycle-bin?limit=
func (s *Server) recycleBin(w http.ResponseWriter, r *http.Request) {
	list, err := s.reg.RecycleBin(r.Context(), session(r), queryLimit(r))
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	if list == nil {
		list = []store.RecycleRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

func mustString(o *jsonv.Object, key string) (string, bool) {
	v, ok := o.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
