// Package callback completes the Google OAuth authorization code flow.
//
// Handler.Handle takes the full redirect URL Google sent the browser to and
// moves through a fixed sequence of phases:
//
//	processing -> validating -> exchanging -> configuring -> success
//
// Any failing step ends in the error phase instead. The state parameter is
// checked against the pending flows, the code is exchanged for tokens, the
// user's connection is recorded in the registry and the integration bridge is
// notified. A bridge failure is logged and does not fail the callback since
// calendar access has already been granted by then.
//
// Every outcome, success or error, is posted to the user's chat feed and
// rendered as an HTML page that redirects back to the application.
package callback
