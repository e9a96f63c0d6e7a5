package http

import (
	"log"
	"net/http"
	"strings"
)

// RouterDeps collects every service slice the HTTP surface needs.
type RouterDeps struct {
	Tools        SlotTools
	CallEvents   CallEvents
	Payments     PaymentEvents
	Messaging    MessagingEvents
	Credits      BalanceReader
	Tenants      TenantProvisioner
	Slots        SlotSeeder
	StripeSecret string
	CORSOrigins  []string
	Logger       *log.Logger
}

// NewRouter builds the full handler chain: routes, CORS, request logging.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)

	mux.Handle("/webhooks/call", HandleCallWebhook(deps.CallEvents))
	mux.Handle("/webhooks/payments", HandleStripeWebhook(deps.Payments, deps.StripeSecret))
	mux.Handle("/webhooks/messaging", HandleMessagingWebhook(deps.Messaging))

	mux.Handle("/tools/claim-slot", HandleClaimSlot(deps.Tools))
	mux.Handle("/tools/confirm-slot", HandleConfirmSlot(deps.Tools))
	mux.Handle("/tools/cancel-slot", HandleCancelSlot(deps.Tools))

	mux.Handle("/tenants", HandleTenants(deps.Tenants))
	mux.Handle("/tenants/", dispatchTenantSubroutes(deps))
	mux.Handle("/slots", HandleSeedSlot(deps.Slots))

	mux.Handle("/", NotFoundHandler())

	return RequestLogger(CORS(deps.CORSOrigins, mux), deps.Logger)
}

// dispatchTenantSubroutes fans /tenants/{id} and its balance and
// transaction leaves out to their handlers.
func dispatchTenantSubroutes(deps RouterDeps) http.Handler {
	getTenant := HandleTenants(deps.Tenants)
	getBalance := HandleGetBalance(deps.Credits)
	listTransactions := HandleListTransactions(deps.Credits)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		switch {
		case len(parts) == 2:
			getTenant.ServeHTTP(w, r)
		case len(parts) == 3 && parts[2] == "balance":
			getBalance.ServeHTTP(w, r)
		case len(parts) == 3 && parts[2] == "transactions":
			listTransactions.ServeHTTP(w, r)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	})
}
