// Package schema provides the attribute and object-class registry and the
// validation pipeline applied to every entry before it is committed.
//
// # Definitions
//
// An AttributeType names an attribute, its value Syntax (string, integer,
// boolean or reference), whether it may hold several values and whether the
// concurrent index keeps a secondary tree for it.
//
// An ObjectClass lists required (Must) and permitted (May) attributes and
// may extend other classes. Extension is composition: the effective sets of
// an entry are the union over every class it declares and every class those
// extend. There is no structural/auxiliary distinction.
//
// The attributes class and uuid are registered by NewSchema and permitted on
// every entry.
//
// # Loading
//
// Schemas are written as YAML documents:
//
//	attributes:
//	  - name: mail
//	    syntax: string
//	    multivalued: true
//	    indexed: true
//	classes:
//	  - name: account
//	    extends: [object]
//	    must: [name]
//	    may: [mail]
//
// Default returns the built-in core schema; Merge layers a site document on
// top of it.
//
// # Validation
//
// Validate runs four checks and stops at the first failure:
//
//  1. the entry declares at least one class and every class is known
//  2. every attribute is permitted by a declared class
//  3. every required attribute is present
//  4. cardinality and value syntax
//
// The failure is reported as a *Violation naming the attribute and the
// Reason. Validation is pure and safe for concurrent use.
package schema
