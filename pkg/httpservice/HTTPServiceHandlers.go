package httpservice

import "context"
import "encoding/json"
import "net/http"

import "github.com/sirgallo/grsfs/pkg/operation"


func (httpService *HTTPService) RegisterStatusRoute() {
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		httpService.writeJSON(w, http.StatusOK, httpService.Node.Status())
	}

	httpService.Mux.HandleFunc(StatusRoute, handler)
}

func (httpService *HTTPService) RegisterElectionRoute() {
	httpService.Mux.HandleFunc(ElectionRoute, httpService.actionHandler(httpService.Node.RunElection))
}

func (httpService *HTTPService) RegisterPromoteRoute() {
	httpService.Mux.HandleFunc(PromoteRoute, httpService.actionHandler(httpService.Node.PromoteSpare))
}

/*
	Register Command Route
		decode a command, tag it with a request id and run it through the kernel as a local operation
		the errno travels in the body, a refused op is still a 200 with a negative errno
*/

func (httpService *HTTPService) RegisterCommandRoute() {
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var requestData CommandRequest

		decodeErr := json.NewDecoder(r.Body).Decode(&requestData)
		if decodeErr != nil {
			http.Error(w, "failed to parse JSON request body", http.StatusBadRequest)
			return
		}

		env, envErr := requestData.envelope()
		if envErr != nil {
			http.Error(w, envErr.Error(), http.StatusBadRequest)
			return
		}

		requestID := httpService.GenerateRequestUUID()
		env.SetInternal(operation.InternalRequestID, requestID)

		result, errno := httpService.Node.Kernel().Execute(env)

		response := &CommandResponse{ RequestID: requestID, Errno: errno }
		if errno == 0 { response.Result = result }

		httpService.writeJSON(w, http.StatusOK, response)
	}

	httpService.Mux.HandleFunc(CommandRoute, handler)
}

func (httpService *HTTPService) actionHandler(action func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), HTTPTimeout)
		defer cancel()

		actionErr := action(ctx)
		if actionErr != nil {
			httpService.writeJSON(w, http.StatusConflict, &ActionResponse{ Error: actionErr.Error() })
			return
		}

		httpService.writeJSON(w, http.StatusOK, &ActionResponse{ OK: true })
	}
}
