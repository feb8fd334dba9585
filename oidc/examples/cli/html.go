// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

const successHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>OIDC Authentication Succeeded</title>
  <style>
    body { font-family: sans-serif; background-color: #f5f5f5; }
    .message { margin: 4em auto; max-width: 30em; padding: 2em; background: #fff; border-radius: 4px; }
  </style>
</head>
<body>
  <div class="message">
    <h1>Signed in via your OIDC provider</h1>
    <p>You can now close this window and return to the terminal.</p>
  </div>
</body>
</html>
`
