package pconn

// DefaultMaxFrameSize bounds the declared body size of an inbound frame.
// It exists so a corrupt or adversarial size header turns into a
// FramingError instead of an attempt to allocate an unbounded buffer.
const DefaultMaxFrameSize = 4 << 20 // 4 MiB
