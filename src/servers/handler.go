package servers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tidwall/gjson"

	"github.com/streamalert-go/streamalert-go/src/consts"
	"github.com/streamalert-go/streamalert-go/src/entity"
	"github.com/streamalert-go/streamalert-go/src/store"
	"github.com/streamalert-go/streamalert-go/src/types"
)

const maxBodySize = 1 << 20

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodySize))
}

func decodeBody(r *http.Request, v any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, consts.GetAppInfo())
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListGroupIDs(r.Context())
	if err != nil {
		writeJsonWithStatusCode(w, http.StatusInternalServerError, commonResp{
			ErrNo:  http.StatusInternalServerError,
			ErrMsg: err.Error(),
		})
		return
	}
	writeJSON(w, ids)
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["group"]
	g, err := s.store.GetGroup(r.Context(), groupID)
	if errors.Is(err, store.ErrGroupNotFound) {
		writeJsonWithStatusCode(w, http.StatusNotFound, commonResp{
			ErrNo:  http.StatusNotFound,
			ErrMsg: fmt.Sprintf("group %s can not find", groupID),
		})
		return
	}
	if err != nil {
		writeJsonWithStatusCode(w, http.StatusInternalServerError, commonResp{
			ErrNo:  http.StatusInternalServerError,
			ErrMsg: err.Error(),
		})
		return
	}
	g.Entities = publicEntities(g.Entities)
	writeJSON(w, g)
}

func (s *Server) putGroupSettings(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["group"]

	var settings entity.GroupSettings
	if err := decodeBody(r, &settings); err != nil {
		writeJsonWithStatusCode(w, http.StatusBadRequest, commonResp{
			ErrNo:  http.StatusBadRequest,
			ErrMsg: err.Error(),
		})
		return
	}
	for i, p := range settings.EnabledPlatforms {
		settings.EnabledPlatforms[i] = types.ParsePlatform(string(p))
	}

	if err := s.store.UpsertGroupSettings(r.Context(), groupID, settings); err != nil {
		writeJsonWithStatusCode(w, http.StatusInternalServerError, commonResp{
			ErrNo:  http.StatusInternalServerError,
			ErrMsg: err.Error(),
		})
		return
	}
	writeJSON(w, settings)
}

func (s *Server) listEntities(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["group"]
	entities, err := s.store.GetEntities(r.Context(), groupID)
	if err != nil {
		writeJsonWithStatusCode(w, http.StatusInternalServerError, commonResp{
			ErrNo:  http.StatusInternalServerError,
			ErrMsg: err.Error(),
		})
		return
	}
	writeJSON(w, publicEntities(entities))
}

func (s *Server) addEntity(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["group"]

	body, err := readBody(r)
	if err != nil {
		writeJsonWithStatusCode(w, http.StatusBadRequest, commonResp{
			ErrNo:  http.StatusBadRequest,
			ErrMsg: err.Error(),
		})
		return
	}

	platform := types.ParsePlatform(gjson.GetBytes(body, "platform").String())
	name := gjson.GetBytes(body, "name").String()
	notifyTarget := gjson.GetBytes(body, "notify_target").String()

	e, err := entity.New(platform, name, notifyTarget)
	if err != nil {
		writeJsonWithStatusCode(w, http.StatusBadRequest, commonResp{
			ErrNo:  http.StatusBadRequest,
			ErrMsg: err.Error(),
		})
		return
	}
	e.AddedBy = gjson.GetBytes(body, "added_by").String()

	if err := s.store.Add(r.Context(), groupID, e); err != nil {
		if errors.Is(err, store.ErrDuplicateEntity) {
			writeJsonWithStatusCode(w, http.StatusConflict, commonResp{
				ErrNo:  http.StatusConflict,
				ErrMsg: fmt.Sprintf("%s is already tracked in group %s", e.ID, groupID),
			})
			return
		}
		writeJsonWithStatusCode(w, http.StatusInternalServerError, commonResp{
			ErrNo:  http.StatusInternalServerError,
			ErrMsg: err.Error(),
		})
		return
	}
	writeJSON(w, e)
}

func (s *Server) removeEntity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID := vars["group"]
	id := types.EntityID(vars["id"])

	if err := s.store.Remove(r.Context(), groupID, id); err != nil {
		if errors.Is(err, store.ErrEntityNotFound) {
			writeJsonWithStatusCode(w, http.StatusNotFound, commonResp{
				ErrNo:  http.StatusNotFound,
				ErrMsg: fmt.Sprintf("entity %s can not find in group %s", id, groupID),
			})
			return
		}
		writeJsonWithStatusCode(w, http.StatusInternalServerError, commonResp{
			ErrNo:  http.StatusInternalServerError,
			ErrMsg: err.Error(),
		})
		return
	}
	writeJSON(w, commonResp{ErrNo: 0, ErrMsg: "ok"})
}

// publicEntities strips stale live metadata from offline entities so
// the API never serves a title or viewer count from a past stream.
// Only the public profile URL survives.
func publicEntities(entities []*entity.TrackedEntity) []*entity.TrackedEntity {
	out := make([]*entity.TrackedEntity, 0, len(entities))
	for _, e := range entities {
		if e.IsLive || e.Snapshot == nil {
			out = append(out, e)
			continue
		}
		clean := *e
		clean.Snapshot = &entity.Snapshot{URL: e.Snapshot.URL}
		out = append(out, &clean)
	}
	return out
}
