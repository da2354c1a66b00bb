// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package manifest provides the Go representation of an anda build manifest:
// the global `config` block and the map of named projects, each of which may
// describe an RPM build, container images, a Flatpak, hook scripts,
// environment overrides, labels and aliases.
//
// # Core Concepts
//
//   - Manifest: the merged view of the root anda.hcl and every nested anda.hcl
//     found below it. Project names are unique keys; iteration is always in
//     name order.
//
//   - Project: one buildable unit. Nested projects are addressed by their
//     directory-qualified name ("dir/name") and optionally by aliases derived
//     from the strip_prefix / strip_suffix rules.
//
//   - Check: structural validation run after the merge. All violations are
//     collected into a single MultipleError so that one run reports every
//     problem in the manifest.
//
// The package has no knowledge of HCL. Parsing and evaluation live in
// hcl_adapter, which produces values of these types.
package manifest
