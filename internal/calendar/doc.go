// Package calendar wraps the Google Calendar v3 API for a single connected user.
//
// A Client is built from an oauth2.TokenSource, normally derived from the
// tokens stored in the connection registry, and every call takes the caller's
// context so request cancellation reaches the API.
//
// Example usage:
//
//	client, err := calendar.NewClient(ctx, tokenSource)
//	if err != nil {
//	    return err
//	}
//
//	events, err := client.ListEvents(ctx, "primary", time.Now(), time.Now().AddDate(0, 0, 7), "")
package calendar
