// Package events defines the typed events the orchestrator reports to an
// event handler.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - assistant_response.*
//   - tool_call.*
//   - assistant_speech.*
//
// Every assistant event carries the id of the request that produced it. The
// same id is used as the synthesis context id, so speech can be matched back
// to the response text.
//
// user_input events
//
//   - UserTranscriptSegment (user_input.transcript_segment): transcribed text
//     delta, appended to the conversation as user text.
//   - UserImageAdded (user_input.image_added): image appended to the
//     conversation.
//
// assistant_response events
//
//   - AssistantRequestIssued (assistant_response.request_issued): a completion
//     request was sent, either a user query or a background check.
//   - AssistantResponseSegment (assistant_response.segment): streamed response
//     text segment.
//   - AssistantResponseFinal (assistant_response.final): the response stream
//     completed.
//   - AssistantResponseInterrupted (assistant_response.interrupted): new input
//     arrived and the response was abandoned.
//   - AssistantResponseFailed (assistant_response.failed): the request failed
//     and the turn was dropped.
//
// tool_call events
//
//   - ToolCallStarted (tool_call.started): tool execution started.
//   - ToolCallCompleted (tool_call.completed): tool execution completed.
//   - ToolCallFailed (tool_call.failed): tool execution failed.
//
// assistant_speech events
//
//   - AssistantSpeechRequested (assistant_speech.requested): batched text was
//     sent for synthesis.
//   - AssistantSpeechDiscarded (assistant_speech.discarded): stale text from an
//     interrupted response was dropped before synthesis.
//   - AssistantSpeechFrame (assistant_speech.frame): synthesized audio was
//     written to the output.
package events
