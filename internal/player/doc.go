// package player models the listening queue shared by every page of the web client.
//
// A [Queue] is either a playlist of mixes, advanced with Next and Previous, or a single live
// radio stream. The server builds queues for GET /api/mixes/{id}/queue and the client keeps
// playing from them while the listener navigates.
package player
