// Package http exposes the booking API over JSON.
//
// Every response uses one envelope. Successes carry
// {"success":true,"data":...} with "count" on list endpoints and
// "pagination" on the user list. Failures carry
// {"success":false,"error_code":"...","message":"..."} plus a per-field
// "errors" map for validation failures.
//
// Routes:
//   - GET /, GET /health, GET /metrics: service information and health checks.
//   - POST /api/auth/register, POST /api/auth/login, GET /api/auth/me.
//   - GET /api/rooms, GET /api/rooms/{id}: public and cached. POST, PUT and
//     DELETE on the same paths require an admin and invalidate the room cache.
//   - /api/bookings: create, list, get, update, POST /api/bookings/{id}/cancel
//     and delete for the owner or an admin. Lists are cached per principal.
//   - /api/users: admin only list (page, limit), GET /api/users/stats/overview,
//     get with bookings, update and delete.
//   - GET /ws: WebSocket notifications; the bearer token may be passed as the
//     token query parameter.
//
// Request and response DTOs live alongside their handlers.
package http
