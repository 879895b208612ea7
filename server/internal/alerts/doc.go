// Package alerts implements the license expiration alert: a pure evaluator
// that turns legacy alert records and cluster identities into per-cluster UI
// state and scheduled actions, an Engine that runs that evaluation on an
// interval against the fetch and state collaborators, and a Dispatcher that
// throttles actions and delivers them to Slack, Teams, generic HTTP or SMS.
package alerts
