// Package http exposes the fivlo services over JSON.
//
// Registration and login are public:
//   - POST /auth/register: {"email","password","display_name","timezone"}.
//   - POST /auth/login: {"email","password"}; returns {"token","token_type",
//     "expires_at","user"}. Send the token as "Authorization: Bearer <token>".
//
// Every other route requires a bearer token:
//   - GET/POST /categories, DELETE /categories/{id}.
//   - GET /tasks?date= or ?from=&to=, POST /tasks, PUT /tasks/{id}?regenerate=,
//     DELETE /tasks/{id}?scope=single|series, POST /tasks/{id}/completion and
//     POST /task-series/{id}/regenerate. Completing a task returns the daily
//     reward evaluation under "reward".
//   - GET /wallet, GET /wallet/ledger?limit=, POST /wallet/purchases,
//     GET /shop/items.
//   - POST /pomodoro/sessions, POST /pomodoro/sessions/{id}/complete and
//     POST /pomodoro/sessions/{id}/abandon.
//   - GET /stats?period=daily|weekly|monthly&date= and GET /stats/export
//     (xlsx) with the same parameters.
//   - GET/POST /reminders, PUT/DELETE /reminders/{id} and
//     POST /reminders/{id}/complete?date=.
//   - POST /goals/plan.
//
// Errors are {"error_code","message","errors"}. Validation failures are 422
// with per-field messages. A 409 with error_code RETRY means a ledger write
// lost a race and the request may be repeated.
package http
