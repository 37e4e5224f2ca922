// Package api provides the HTTP client for the monitor backend.
//
// All backend responses share a uniform JSON envelope:
//
//	{"success": true,  "data": {...}}
//	{"success": false, "error": {"code": "DEVICE_NOT_FOUND", "message": "..."}}
//
// [Client] decodes the envelope, unmarshals the data payload into typed
// results, and classifies every failure as one of three kinds:
//
//   - [KindClient]: the request was rejected (4xx). Retrying cannot
//     help, so the error carries the backend's code and message and is
//     returned immediately.
//   - [KindTimeout]: an attempt exceeded the per-attempt deadline. The
//     backend may still be processing the request, so no retry is made.
//   - [KindTransient]: everything else (connection refused, 5xx,
//     malformed body). Retried with exponential backoff until the
//     attempt budget is spent, then the last error is returned.
//
// Basic usage:
//
//	client, err := api.New("http://127.0.0.1:8080",
//		api.WithTimeout(3*time.Second),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	metrics, err := client.CurrentMetrics(ctx, false)
//	if api.IsClientError(err) {
//		// the backend rejected the request; inspect api.ErrorCode(err)
//	}
package api
