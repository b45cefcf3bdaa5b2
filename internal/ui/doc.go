// Package ui implements the moderation console using bubbletea's Elm architecture.
//
// The [Model] shows two tabs:
//  1. [MixesTab] : mixes awaiting review, oldest first
//  2. [RequestsTab] : open DJ role applications
//
// Reviews are applied through a [Reviewer], normally a [tasks.Moderator]. Results arrive as [Msg]
// values and every review reloads the queue, so the lists always mirror the database.
//
// Keys: tab switches lists, a approves, x asks for a reason and rejects, r reloads, / filters and
// q quits. Contextual help is rendered with charmbracelet/bubbles/help.
package ui
