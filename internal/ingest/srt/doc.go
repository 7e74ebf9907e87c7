// Package srt carries MPEG-TS over SRT (Secure Reliable Transport) into the
// ingest registry for probing. Server accepts publish connections in
// listener mode, Caller pulls from remote listeners, and Push sends a
// transport stream to a listener at its real-time rate.
package srt
