package entities

// RenderRequest is the body of a render call.
//
// Wasm holds the guest module as base64 (standard alphabet) of the binary
// module encoding. Textual module source is not accepted.
type RenderRequest struct {
	Wasm string `json:"wasm" validate:"required,base64" jsonschema:"required,title=Guest module,description=Base64 (standard alphabet) encoding of a binary WebAssembly module"`
}
