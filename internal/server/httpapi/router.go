package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the REST routes onto a mux router. Slugs are
// restricted to the same character set the services accept.
func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/package-sets", h.createPackageSet).Methods(http.MethodPost)
	api.HandleFunc("/package-sets", h.listPackageSets).Methods(http.MethodGet)

	sets := api.PathPrefix("/package-sets/{set}").Subrouter()
	sets.HandleFunc("", h.getPackageSet).Methods(http.MethodGet)
	sets.HandleFunc("", h.updatePackageSet).Methods(http.MethodPatch)
	sets.HandleFunc("/sync-drive", h.syncDrive).Methods(http.MethodPost)
	sets.HandleFunc("/sync-drive-async", h.syncDriveAsync).Methods(http.MethodPost)

	sets.HandleFunc("/packages", h.createPackage).Methods(http.MethodPost)
	sets.HandleFunc("/packages", h.listPackages).Methods(http.MethodGet)

	pkgs := sets.PathPrefix("/packages/{pkg}").Subrouter()
	pkgs.HandleFunc("", h.getPackage).Methods(http.MethodGet)
	pkgs.HandleFunc("", h.updatePackage).Methods(http.MethodPatch)
	pkgs.HandleFunc("/preview", h.previewPackage).Methods(http.MethodPost)
	pkgs.HandleFunc("/snapshot", h.snapshotPackage).Methods(http.MethodPost)
	pkgs.HandleFunc("/versions", h.listVersions).Methods(http.MethodGet)
	pkgs.HandleFunc("/publish", h.publishPackage).Methods(http.MethodPost)

	api.HandleFunc("/tasks/{id}", h.getTask).Methods(http.MethodGet)

	return r
}
