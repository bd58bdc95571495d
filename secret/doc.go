// Package secret provides strict environment expansion for configuration
// values that carry sensitive material, such as the key-derivation secret
// and the remote store URL.
package secret
