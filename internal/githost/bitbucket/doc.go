// Package bitbucket would hold a second githost.Client implementation
// for Bitbucket Server/Cloud. Spec §1 names "Bitbucket/GitHub REST
// clients" as the kind of outer collaborator this repository does not
// own; only the interface (internal/githost) plus one concrete adapter
// (internal/githost/github) are needed to exercise the gating core
// end-to-end, so this package intentionally contains no implementation.
package bitbucket
