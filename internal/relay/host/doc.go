/*
Package host implements the capabilities a module can reach from guest code.

Install registers, on one sandbox runtime:

  - request(url, method, headers, body): a promise of a normalized response
  - log(message, level): fire-and-forget logging
  - resolveChallenge(url) and its alias callWebview: a promise of the
    headers produced by an interactive challenge solver
  - console.log/info/debug/warn/error, forwarded to the same sink as log

These are the only host operations a guest can call. Failures reject the
guest promise with an Error carrying a code property.
*/
package host
