package models

// ReservedQueue is the internal maintenance queue name user code must not
// register a registry or bus against, per spec.md §6.
const ReservedQueue = "__maintenance__"
