/*
Package paramconv converts strings taken from requests (path
variables, query parameters, headers, and cookies) into typed values.

Converters come from Providers.  Lookup asks the Providers registered
with an InjectionManager first, in rank order, and then Aggregated,
which tries time, Enum, Parser, encoding.TextUnmarshaler, numbers and
booleans, and strings, in that order.

Empty input that cannot be converted becomes nil.  Other input that
cannot be converted is an ExtractorError (400); a converter that
breaks is a ProcessingError (500).
*/
package paramconv
