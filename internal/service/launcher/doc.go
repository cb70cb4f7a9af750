// Package launcher drives a single match: banner, optional self-update,
// the match itself, the final report and the optional replay publication.
package launcher
