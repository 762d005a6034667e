// Package runtime loads guests and drives them.
//
// Runtime ties the host together: it owns the registry of loaded guests,
// the control loop and the per-frame scheduler, the memory bridge, and the
// resource bridge, and it implements the env imports guests call.
//
// # Loading
//
// Load fetches an image off the control goroutine, gunzips it if needed,
// then on the control goroutine instantiates it, mounts its presentation
// target, registers it inactive, and calls init with its handle. A failure
// at any step closes the guest and leaves nothing registered.
//
//	rt, err := runtime.New(ctx, cfg)
//	go rt.Serve(ctx)                        // or rt.Run(ctx, path, target)
//	h, err := rt.Load(ctx, "game.wasm", "main")
//
// # Activation
//
// Guests start inactive. A guest opts into per-frame update calls with
// setCanUpdate(1), usually from init, and out with setCanUpdate(0).
//
// # Guest Identity
//
// The handle of the guest being called travels in the ctx of every export
// call, so imports always act on the calling guest.
package runtime
