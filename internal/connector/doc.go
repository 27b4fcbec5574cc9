// Package connector is the tool-connector platform: it maps users to
// entities, tracks their calendar connections and executes calendar tools on
// their behalf.
//
// Two backends implement Platform. Google executes tools against the Google
// Calendar API with the tokens held in the connection registry. Simulated is
// an explicit fake that fabricates connection and event identifiers and keeps
// events in memory; it exists for local development and tests and never
// performs network calls.
package connector
