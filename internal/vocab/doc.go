// Package vocab generates topic-specific vocabularies that bias the
// transcription engine toward lecture terminology.
package vocab
