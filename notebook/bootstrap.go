package notebook

// bootstrapSource is the worker program executed by a Runner. It owns the
// persistent variable environment for one session and speaks the newline
// delimited JSON protocol over stdin/stdout. Result values are tagged before
// crossing the pipe because live objects cannot leave the process.
//
// The two-phase cell semantics live here: everything but the last line runs
// as a statement block, then the last line is evaluated as an expression with
// a fallback to statement execution. Awaitable results are driven to
// completion before tagging, recursively for lists and tuples.
const bootstrapSource = `
import asyncio
import base64
import io
import json
import sys
import traceback

ENV = {"__builtins__": __builtins__}


def _resolve(obj):
    if asyncio.iscoroutine(obj):
        try:
            loop = asyncio.get_event_loop()
        except RuntimeError:
            loop = asyncio.new_event_loop()
            asyncio.set_event_loop(loop)
        return loop.run_until_complete(obj)
    if isinstance(obj, (list, tuple)):
        return type(obj)(_resolve(v) for v in obj)
    return obj


def _png(write):
    buf = io.BytesIO()
    write(buf)
    return base64.b64encode(buf.getvalue()).decode()


def _tag(obj):
    if isinstance(obj, str):
        return {"kind": "text", "data": obj}
    if isinstance(obj, bytes):
        return {"kind": "bytes", "b64": base64.b64encode(obj).decode()}
    mod = type(obj).__module__ or ""
    if mod.startswith("pandas") and hasattr(obj, "to_dict"):
        try:
            data = obj.to_dict("split")
            # Cells in the split payload can hold scalars json cannot encode
            # (Timestamp, NaT, arbitrary objects); such frames degrade to the
            # opaque arm instead of poisoning the response line.
            json.dumps(data)
            return {"kind": "dataframe", "data": data}
        except Exception:
            pass
    if mod.startswith("PIL") and hasattr(obj, "save"):
        try:
            return {"kind": "image/png", "b64": _png(lambda b: obj.save(b, format="PNG"))}
        except Exception:
            pass
    if mod.startswith("matplotlib") and hasattr(obj, "savefig"):
        try:
            return {"kind": "image/png", "b64": _png(lambda b: obj.savefig(b, format="png", bbox_inches="tight"))}
        except Exception:
            pass
    if mod.startswith("plotly") and hasattr(obj, "to_image"):
        try:
            return {"kind": "image/png", "b64": base64.b64encode(obj.to_image(format="png")).decode()}
        except Exception:
            pass
    try:
        import pickle
        payload = pickle.dumps(obj)
    except Exception:
        payload = repr(obj).encode()
    return {"kind": "opaque", "type": type(obj).__name__, "b64": base64.b64encode(payload).decode()}


def _charts():
    # Collect and dispose any figures left open by the cell so resources do
    # not accumulate across many executions.
    out = []
    if "matplotlib.pyplot" in sys.modules:
        plt = sys.modules["matplotlib.pyplot"]
        for num in list(plt.get_fignums()):
            fig = plt.figure(num)
            try:
                out.append({"kind": "image/png", "b64": _png(lambda b: fig.savefig(b, format="png"))})
            finally:
                plt.close(fig)
    return out


def _exec_cell(body, last):
    buf = io.StringIO()
    old_stdout = sys.stdout
    sys.stdout = buf
    orig_print = ENV.get("print", print)

    def _print(*args, **kwargs):
        orig_print(*[_resolve(a) for a in args], **kwargs)

    ENV["print"] = _print
    result = None
    try:
        if body:
            exec(body, ENV)
        if last:
            try:
                result = _resolve(eval(last, ENV))
            except Exception:
                exec(last, ENV)
                result = None
            if result is not None:
                _print(result)
    except Exception as e:
        _print("Error: %s" % (e,))
    finally:
        sys.stdout = old_stdout
        ENV["print"] = orig_print

    results = []
    if isinstance(result, tuple):
        for item in result:
            tagged = _tag(item)
            if tagged is not None:
                results.append(tagged)
    elif result is not None:
        results.append(_tag(result))
    results.extend(_charts())
    return buf.getvalue(), results


def main():
    out = sys.__stdout__
    for line in sys.stdin:
        line = line.strip()
        if not line:
            continue
        try:
            req = json.loads(line)
        except Exception:
            continue
        resp = {"id": req.get("id")}
        try:
            op = req.get("op")
            if op == "exec":
                console, results = _exec_cell(req.get("body", ""), req.get("last", ""))
                resp["console"] = console
                resp["results"] = results
            elif op == "vars":
                resp["vars"] = {
                    k: repr(v)
                    for k, v in ENV.items()
                    if not (k.startswith("__") and k.endswith("__"))
                }
            elif op == "ping":
                resp["ok"] = True
            else:
                resp["error"] = "unknown op: %r" % (op,)
        except Exception as e:
            resp["error"] = "".join(traceback.format_exception_only(type(e), e)).strip()
        try:
            payload = json.dumps(resp)
        except Exception as e:
            # A response must go out for every request or the host blocks and
            # drops the worker. Degrade to an error line, keep the environment.
            payload = json.dumps({"id": req.get("id"), "error": "response not serializable: %s" % (e,)})
        out.write(payload + "\n")
        out.flush()


main()
`
