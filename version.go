package troupe

// Version is the released version of the troupe module.
const Version = "0.4.0"
