// Package igdb implements the IGDB metadata provider client.
//
// IGDB authenticates through Twitch's client-credentials grant and accepts
// Apicalypse query bodies on POST endpoints.
package igdb
