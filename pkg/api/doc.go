// Package api implements the HTTP surface of the authentication service.
//
// The server exposes the local credential flows (signup, login, password
// reset), bearer-token verification, federated sign-in through Google,
// and account lookup. Handlers translate the auth package's typed
// failures into HTTP statuses; infrastructure failures never leak
// storage details to clients.
package api
