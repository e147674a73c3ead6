// Package opencritic implements the OpenCritic metadata provider client.
package opencritic
