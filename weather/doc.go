// Package weather fetches one-line current conditions from wttr.in.
package weather
