package routes

import (
	"github.com/gorilla/mux"

	"ember/handlers"
)

// Setup configures and returns a new router with all defined routes for the application.
func Setup(container *handlers.Container) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)

	systems := handlers.NewSystemHandlers(container)
	backups := handlers.NewBackupHandlers(container)
	bootCfg := handlers.NewBootConfigHandlers(container)
	status := handlers.NewStatusHandlers(container)
	bootSig := handlers.NewBootHandlers(container)

	setupGetRoutes(router, systems, backups, bootCfg, status)
	setupPostRoutes(router, systems, bootCfg, bootSig)

	return router
}

// setupGetRoutes defines all routes that handle GET requests.
func setupGetRoutes(
	router *mux.Router,
	systems *handlers.SystemHandlers,
	backups *handlers.BackupHandlers,
	bootCfg *handlers.BootConfigHandlers,
	status *handlers.StatusHandlers,
) {
	router.HandleFunc("/api/systems", systems.ListSystems).Methods("GET").Name("ListSystems")
	router.HandleFunc("/api/backups", backups.ListBackups).Methods("GET").Name("ListBackups")
	router.HandleFunc("/api/bootconfig", bootCfg.GetBootConfig).Methods("GET").Name("GetBootConfig")
	router.HandleFunc("/api/status", status.GetStatus).Methods("GET").Name("Status")
}

// setupPostRoutes defines all routes that mutate state.
func setupPostRoutes(
	router *mux.Router,
	systems *handlers.SystemHandlers,
	bootCfg *handlers.BootConfigHandlers,
	bootSig *handlers.BootHandlers,
) {
	router.HandleFunc("/api/systems/install", systems.InstallSystem).Methods("POST").Name("InstallSystem")
	router.HandleFunc("/api/systems/{name}/backup", systems.BackupSystem).Methods("POST").Name("BackupSystem")
	router.HandleFunc("/api/systems/{name}/restore", systems.RestoreSystem).Methods("POST").Name("RestoreSystem")
	router.HandleFunc("/api/systems/{name}/remove", systems.RemoveSystem).Methods("POST").Name("RemoveSystem")
	router.HandleFunc("/api/systems/{name}/update", systems.UpdateSystem).Methods("POST").Name("UpdateSystem")
	router.HandleFunc("/api/systems/{name}/default", systems.SetDefaultSystem).Methods("POST").Name("SetDefaultSystem")
	router.HandleFunc("/api/bootconfig", bootCfg.PutBootConfig).Methods("PUT").Name("PutBootConfig")
	router.HandleFunc("/api/boot", bootSig.Signal).Methods("POST").Name("BootSignal")
}
