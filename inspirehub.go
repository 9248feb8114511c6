// Package inspirehub provides a client for the InspireHub REST API.
//
// Features:
// - Session handling with persisted credentials and transparent token renewal on 401.
// - A single request gateway that retries an unauthorized call at most once.
// - Offset-based feed pagination in append or replace mode, plus iterator traversal.
// - Typed helpers for posts, likes, comments, profiles and the daily quote.
package inspirehub
