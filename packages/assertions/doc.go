// Package assertions checks a finished request against expectations.
//
// An expectation is written as "<subject> <operator> [expected]":
//
//	status == 201
//	header content-type contains json
//	body.data.items length 3
//	body.data.id exists
//	body schema ./user.schema.json
//
// Subjects are status, url, header <name>, body and body.<gjson path>.
// The expected value is read as a JSON literal when it parses as one and
// as a plain string otherwise.
package assertions
