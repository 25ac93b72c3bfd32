package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/logging"
	"github.com/editorial-eng/packsync/internal/server/models"
	"github.com/editorial-eng/packsync/internal/server/services"
)

// userHeader names the request header carrying the acting user.
// Authentication proper is handled upstream of this service.
const userHeader = "X-User"

type Handlers struct {
	sets    PackageSetAPI
	pkgs    PackageAPI
	publish PublishAPI
	tasks   TaskAPI
	log     logging.Logger
}

func NewHandlers(sets PackageSetAPI, pkgs PackageAPI, publish PublishAPI, tasks TaskAPI, log logging.Logger) *Handlers {
	return &Handlers{
		sets:    sets,
		pkgs:    pkgs,
		publish: publish,
		tasks:   tasks,
		log:     log,
	}
}

func requestUser(r *http.Request) string {
	if user := r.Header.Get(userHeader); user != "" {
		return user
	}
	return "anonymous"
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// writeError maps the error kind onto an HTTP status: caller mistakes
// and missing configuration are 400, unknown resources 404, upstream
// failures 502, anything else 500.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= 500 {
		h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return common.ValidationError("invalid request body: %s", err)
	}
	return nil
}

// ---- package sets ----

func (h *Handlers) createPackageSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug     string         `json:"slug"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	set, err := h.sets.Create(r.Context(), req.Slug, req.Metadata, requestUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, setView(set))
}

func (h *Handlers) listPackageSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.sets.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]map[string]any, 0, len(sets))
	for _, set := range sets {
		views = append(views, setView(set))
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) getPackageSet(w http.ResponseWriter, r *http.Request) {
	set, err := h.sets.Get(r.Context(), mux.Vars(r)["set"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, setView(set))
}

func (h *Handlers) updatePackageSet(w http.ResponseWriter, r *http.Request) {
	set, err := h.sets.Get(r.Context(), mux.Vars(r)["set"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req struct {
		Metadata map[string]any `json:"metadata"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Metadata == nil {
		h.writeError(w, r, common.ValidationError("metadata is required"))
		return
	}
	if err := h.sets.UpdateMetadata(r.Context(), set.ID, req.Metadata); err != nil {
		h.writeError(w, r, err)
		return
	}
	set.Metadata = req.Metadata
	h.writeJSON(w, http.StatusOK, setView(set))
}

func (h *Handlers) syncDrive(w http.ResponseWriter, r *http.Request) {
	set, err := h.sets.Get(r.Context(), mux.Vars(r)["set"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.sets.SyncFromSource(r.Context(), set, requestUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if created == nil {
		created = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"created": created})
}

func (h *Handlers) syncDriveAsync(w http.ResponseWriter, r *http.Request) {
	set, err := h.sets.Get(r.Context(), mux.Vars(r)["set"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	user := requestUser(r)
	id := h.tasks.Submit("sync-drive", func(ctx context.Context) (any, error) {
		return h.sets.SyncFromSource(ctx, set, user)
	})
	h.writeJSON(w, http.StatusAccepted, map[string]string{"task_id": id})
}

// ---- packages ----

func (h *Handlers) createPackage(w http.ResponseWriter, r *http.Request) {
	set, err := h.sets.Get(r.Context(), mux.Vars(r)["set"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req struct {
		Slug     string         `json:"slug"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	pkg, err := h.pkgs.Create(r.Context(), set.ID, req.Slug, req.Metadata, requestUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, packageView(pkg))
}

func (h *Handlers) listPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := h.pkgs.List(r.Context(), mux.Vars(r)["set"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]map[string]any, 0, len(pkgs))
	for _, pkg := range pkgs {
		views = append(views, packageView(pkg))
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) loadPackage(r *http.Request) (*models.Package, error) {
	vars := mux.Vars(r)
	return h.pkgs.Get(r.Context(), vars["set"], vars["pkg"])
}

func (h *Handlers) getPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.loadPackage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, packageView(pkg))
}

func (h *Handlers) updatePackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.loadPackage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req struct {
		Metadata map[string]any `json:"metadata"`
		State    *string        `json:"state"`
		Tags     []string       `json:"tags"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Metadata != nil {
		pkg.Metadata = req.Metadata
	}
	if req.State != nil {
		pkg.State = *req.State
	}
	if req.Tags != nil {
		pkg.Tags = req.Tags
	}

	if err := h.pkgs.Update(r.Context(), pkg); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, packageView(pkg))
}

// preview refreshes the cached working copy from Drive and returns it.
func (h *Handlers) previewPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.loadPackage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.pkgs.FetchCache(r.Context(), pkg); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, packageView(pkg))
}

// snapshotPackage freezes the named cached items into a new version.
func (h *Handlers) snapshotPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.loadPackage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Items       []string `json:"items"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	version, err := h.pkgs.CreateVersion(r.Context(), pkg, requestUser(r),
		services.VersionStub{Title: req.Title, Description: req.Description}, req.Items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, versionView(version))
}

func (h *Handlers) listVersions(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.loadPackage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	versions, err := h.pkgs.ListVersions(r.Context(), pkg.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]map[string]any, 0, len(versions))
	for _, version := range versions {
		views = append(views, versionView(version))
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) publishPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.loadPackage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.publish.PublishPackage(r.Context(), pkg)
	if err != nil {
		// Partial media uploads ride along with the error so the
		// caller can clean up on the CMS.
		if result != nil && len(result.MediaIDs) > 0 {
			h.writeJSON(w, statusForError(err), map[string]any{
				"error":     err.Error(),
				"media_ids": result.MediaIDs,
			})
			return
		}
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"post_id":   result.PostID,
		"media_ids": result.MediaIDs,
	})
}

// ---- tasks ----

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Status(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

func statusForError(err error) int {
	switch common.KindOf(err) {
	case common.KindValidation, common.KindConfiguration:
		return http.StatusBadRequest
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ---- views ----

func setView(set *models.PackageSet) map[string]any {
	return map[string]any{
		"id":         set.ID,
		"slug":       set.Slug,
		"metadata":   set.Metadata,
		"created_by": set.CreatedBy,
		"created_at": set.CreatedAt,
		"updated_at": set.UpdatedAt,
	}
}

func packageView(pkg *models.Package) map[string]any {
	return map[string]any{
		"id":                pkg.ID,
		"package_set_id":    pkg.PackageSetID,
		"slug":              pkg.Slug,
		"metadata":          pkg.Metadata,
		"cached":            pkg.Cached,
		"last_fetched_date": pkg.LastFetchedDate,
		"state":             pkg.State,
		"tags":              pkg.Tags,
		"latest_version_id": pkg.LatestVersionID,
		"created_by":        pkg.CreatedBy,
	}
}

func versionView(version *models.PackageVersion) map[string]any {
	return map[string]any{
		"id":                  version.ID,
		"package_id":          version.PackageID,
		"id_num":              version.IDNum,
		"title":               version.Title,
		"version_description": version.VersionDescription,
		"created_by":          version.CreatedBy,
		"created_at":          version.CreatedAt,
	}
}
