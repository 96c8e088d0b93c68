// Package prebuilt provides ready-made agents built on the turn engine.
//
// Each constructor wires a node graph, a state schema and a checkpoint
// store into an agent.Base:
//
//   - NewChatAgent: question answering with an optional document search and
//     a bounded quality-retry loop.
//   - NewRSSAgent: feed subscription management with approval-gated
//     removal that suspends across turns.
//   - NewAnalysisAgent: parallel document summarization with a combining
//     step.
//
// The agents double as worked examples for building custom graphs.
package prebuilt
