/*
Package types provides the shared data model of the Undertow pipeline.

types is the lowest-level package and depends on no other package in the
module. Everything that crosses a package boundary is defined here so the
orchestration, gating, debate, and escalation layers never import each other
for plain data.

# Core types

  - StoryContext     — immutable story input (headline, summary, events, actors, zones)
  - AnalysisContext  — optional enrichment (profiles, history, frames)
  - AgentOutcome     — result of one agent invocation (success, output, quality, cost)
  - AgentOutput      — tagged-variant interface implemented by every agent payload
  - Factor           — one named quality signal in [0,1] emitted by an output
  - Tier             — coarse cost/quality class used to price and route invocations
  - Error / ErrorCode — structured error with retryability marker

# Conventions

Quality scores and factor scores live in [0,1]. Costs are monetary units.
StoryContext is passed by pointer and never mutated downstream.
*/
package types
