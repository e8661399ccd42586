// Package quiz holds the plant-diagnosis quiz model and its traversal engine.
//
// A Tree is loaded once (Parse, LoadFile, LoadCatalog), validated, and then
// treated as read-only; it may be shared by any number of sessions without
// locking. Each session owns a State and moves it with Tree.Advance and
// Tree.Retreat, which return new values instead of mutating their input.
//
// Tags collected by Advance form a forward-only log: Retreat never removes
// them, so State.Tags holds every tag seen along any path the user took, not
// only the tags of the currently active path.
package quiz
