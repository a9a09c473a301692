// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

// Package quality scores camera streams.
//
// Each tick, the Assessor turns a camera's chunk metadata into a
// QualityReport with four independently scored dimensions (technical,
// positional, stability, content relevance) combined into an overall
// score by configured weights and bucketed into a tier.
//
// Dimensions are scored by small DimensionScorer implementations so tests
// (and future AI-backed content scorers) can substitute synthetic ones.
// Reports are immutable; the Assessor retains a bounded rolling history
// per camera for trend analysis and degradation fallback.
package quality
