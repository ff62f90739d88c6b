package kv

// Version is the engine's release identifier, bumped on any change to
// the persisted record layout. Grounded on the teacher's top-level
// Version const and ShowVersion() pairing.
const Version = "0.1.0"

// ShowVersion returns the current engine version.
func ShowVersion() string {
	return Version
}
