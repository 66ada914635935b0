/*
Package ldap implements the directory store on Active Directory over LDAP.

# Architecture Overview

  - Store: binds directory paths to connections (directory.Store)
  - entry: attribute buffering, search and commit on a bound connection (directory.Entry)
  - Path: parsing of LDAP://host/DN style paths
  - SRVDiscovery: domain controller lookup for serverless paths

# Connection Management

Every Bind dials a fresh connection which is owned by the returned entry
and released by its Close. Children staged with AddChild share the
connection of their parent.

  - Servers named in the path are used directly; serverless paths are
    resolved through _ldaps._tcp, _ldap._tcp and _gc._tcp SRV records
  - Plain connections are upgraded with StartTLS unless SkipTLS is set
  - Dialing and operations are retried with exponential backoff while the
    error is retryable
  - Accounts authenticate with simple bind, or GSSAPI when a Kerberos
    realm is configured; an empty username is anonymous

# Active Directory Specifics

  - objectGUID and objectSid are returned in string form
  - Passwords are written to unicodePwd as quoted UTF-16LE, which Active
    Directory accepts only on encrypted connections
  - Accounts are enabled and disabled through the ACCOUNTDISABLE flag of
    userAccountControl, preserving the other flags

# Error Handling

Failures are returned as *LDAPError carrying the operation, DN, LDAP
result code and a category:

  - Categorized errors (connection, authentication, validation, etc.)
  - Retryable error classification
  - Server message integration

# Logging

Operations are logged through the "ldap" tflog subsystem, whose level is
read from ADLIB_LOG_LDAP. Password fields are masked.

# Example Usage

	store, err := ldap.NewStore(ctx, ldap.DefaultConfig())
	if err != nil {
		return err
	}

	entry, err := store.Bind(ctx, "LDAP://dc1.example.com/DC=example,DC=com", "administrator", "password")
	if err != nil {
		return err
	}
	defer entry.Close()

	result, err := entry.Search(ctx, directory.And(
		directory.ObjectClass("user"),
		directory.Equals("sAMAccountName", "jdoe"),
	), []string{"cn"})
*/
package ldap
