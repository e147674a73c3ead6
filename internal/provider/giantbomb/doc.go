// Package giantbomb implements the GiantBomb metadata provider client.
package giantbomb
