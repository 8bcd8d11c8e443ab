// Package cabal provides the concrete collaborators the build pipeline
// needs to drive cabal-install: a .cabal manifest lookup and a launcher
// for `cabal configure` and `cabal build`.
package cabal
