// Package pkg provides the core libraries for rcxbench.
//
// # Overview
//
// rcxbench drives an external OpenROAD binary to generate parasitic
// extraction (RCX) calibration benches: synthetic wire patterns whose
// extracted parasitics are compared against field-solver golden data. The
// pkg directory is organized into these areas:
//
//  1. [schema] - Configuration manifest (TOML in, keyed values, JSON out)
//  2. [tech] - Technology layer stack parsed from LEF
//  3. [flow] - Flowgraph and step runner
//  4. [tools] - Tool driver registry; [tools/openroad] is the one driver
//  5. [cache] - Step-result cache (file or Redis backed)
//  6. [report] - HTTP report server over the build tree
//  7. [history] - Optional MongoDB run history
//
// # Architecture
//
// The typical data flow through rcxbench:
//
//	manifest (TOML) + technology LEF
//	         ↓
//	    [flow] package (flowgraph, step ordering)
//	         ↓
//	    [tools/openroad] package (script generation, tool launch)
//	         ↓
//	    <build>/<design>/<job>/<step>0/outputs (netlist, DEF, manifest)
//
// Each step runs in its own directory with inputs staged from its
// predecessors, and finished steps are cached by content so reruns are
// cheap.
package pkg
