// Package integrity provides event hash and signing helpers used to protect the
// ledger's tamper-evident chain.
//
// Each stored event carries the content hash of its payload and a chain hash
// that covers its envelope and its predecessor's chain hash. An optional
// keyring signs every chain hash with a per-stream derived key.
package integrity
