package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/solarfleet/control-plane/internal/app"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// routes holds the application and logger every handler closes over.
// Handlers are grouped into files by the entity they serve, following
// the teacher's cmd/gateway convention of one handlers_<entity>.go
// per resource.
type routes struct {
	app *app.Application
	log *logger.Logger
}

func registerRoutes(router *mux.Router, application *app.Application, log *logger.Logger) {
	rt := &routes{app: application, log: log}

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", rt.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", rt.handleLogin).Methods(http.MethodPost)

	api.HandleFunc("/tenants", rt.userAuth(rt.handleCreateTenant)).Methods(http.MethodPost)
	api.HandleFunc("/tenants", rt.userAuth(rt.handleListTenants)).Methods(http.MethodGet)
	api.HandleFunc("/tenants/{tenantId}/users", rt.userAuth(rt.handleInviteUser)).Methods(http.MethodPost)
	api.HandleFunc("/tenants/{tenantId}/users/{userId}/role", rt.userAuth(rt.handleUpdateUserRole)).Methods(http.MethodPatch)

	api.HandleFunc("/tenants/{tenantId}/sites", rt.userAuth(rt.handleCreateSite)).Methods(http.MethodPost)
	api.HandleFunc("/tenants/{tenantId}/sites", rt.userAuth(rt.handleListSites)).Methods(http.MethodGet)
	api.HandleFunc("/tenants/{tenantId}/sites/{siteId}/location", rt.userAuth(rt.handleUpdateSiteLocation)).Methods(http.MethodPatch)

	api.HandleFunc("/tenants/{tenantId}/devices", rt.userAuth(rt.handleCreateDevice)).Methods(http.MethodPost)
	api.HandleFunc("/tenants/{tenantId}/devices/bulk", rt.userAuth(rt.handleBulkCreateDevices)).Methods(http.MethodPost)
	api.HandleFunc("/tenants/{tenantId}/devices", rt.userAuth(rt.handleListDevices)).Methods(http.MethodGet)
	api.HandleFunc("/tenants/{tenantId}/devices/{deviceId}", rt.userAuth(rt.handleGetDevice)).Methods(http.MethodGet)
	api.HandleFunc("/tenants/{tenantId}/devices/{deviceId}", rt.userAuth(rt.handleUpdateDevice)).Methods(http.MethodPatch)

	api.HandleFunc("/devices/{deviceId}/telemetry", rt.deviceAuth(rt.handleIngestTelemetry)).Methods(http.MethodPost)
	api.HandleFunc("/tenants/{tenantId}/devices/{deviceId}/twin", rt.userAuth(rt.handleGetTwin)).Methods(http.MethodGet)

	api.HandleFunc("/tenants/{tenantId}/devices/{deviceId}/commands", rt.userAuth(rt.handleCreateCommand)).Methods(http.MethodPost)
	api.HandleFunc("/devices/{deviceId}/commands/pending", rt.deviceAuth(rt.handlePollCommands)).Methods(http.MethodGet)
	api.HandleFunc("/devices/{deviceId}/commands/{commandId}/ack", rt.deviceAuth(rt.handleAckCommand)).Methods(http.MethodPost)

	api.HandleFunc("/tenants/{tenantId}/alert-rules", rt.userAuth(rt.handleCreateAlertRule)).Methods(http.MethodPost)
	api.HandleFunc("/tenants/{tenantId}/alert-rules", rt.userAuth(rt.handleListAlertRules)).Methods(http.MethodGet)
	api.HandleFunc("/tenants/{tenantId}/alert-events", rt.userAuth(rt.handleListAlertEvents)).Methods(http.MethodGet)
	api.HandleFunc("/tenants/{tenantId}/alert-events/{eventId}/ack", rt.userAuth(rt.handleAckAlertEvent)).Methods(http.MethodPost)
	api.HandleFunc("/tenants/{tenantId}/alert-events/{eventId}/close", rt.userAuth(rt.handleCloseAlertEvent)).Methods(http.MethodPost)

	api.HandleFunc("/tenants/{tenantId}/notification-channels", rt.userAuth(rt.handleCreateNotificationChannel)).Methods(http.MethodPost)
	api.HandleFunc("/tenants/{tenantId}/notification-channels", rt.userAuth(rt.handleListNotificationChannels)).Methods(http.MethodGet)

	api.HandleFunc("/ota/firmware", rt.userAuth(rt.handleRegisterFirmware)).Methods(http.MethodPost)
	api.HandleFunc("/ota/firmware", rt.userAuth(rt.handleListFirmware)).Methods(http.MethodGet)
	api.HandleFunc("/tenants/{tenantId}/ota/jobs", rt.userAuth(rt.handleScheduleOtaJob)).Methods(http.MethodPost)
	api.HandleFunc("/ota/jobs/{jobId}/cancel", rt.userAuth(rt.handleCancelOtaJob)).Methods(http.MethodPost)
	api.HandleFunc("/tenants/{tenantId}/devices/{deviceId}/ota/next", rt.deviceAuth(rt.handleNextOtaJob)).Methods(http.MethodGet)
	api.HandleFunc("/devices/{deviceId}/ota/jobs/{jobId}/report", rt.deviceAuth(rt.handleReportOtaJob)).Methods(http.MethodPost)

	api.HandleFunc("/sim/{iccid}/actions", rt.userAuth(rt.handleRequestSimAction)).Methods(http.MethodPost)
	api.HandleFunc("/tenants/{tenantId}/devices/{deviceId}/sim/actions", rt.userAuth(rt.handleListSimActions)).Methods(http.MethodGet)

	api.HandleFunc("/tenants/{tenantId}/entitlements", rt.userAuth(rt.handleSetEntitlement)).Methods(http.MethodPut)

	api.HandleFunc("/tenants/{tenantId}/audit", rt.userAuth(rt.handleListAudit)).Methods(http.MethodGet)

	api.HandleFunc("/tenants/{tenantId}/analytics/rollups", rt.userAuth(rt.handleListRollups)).Methods(http.MethodGet)
	api.HandleFunc("/tenants/{tenantId}/dashboard/summary", rt.userAuth(rt.handleDashboardSummary)).Methods(http.MethodGet)
}
